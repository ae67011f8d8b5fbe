// Package cache provides the generic LRU cache shared by the shader file
// registry and the compiled program cache.
//
//	c := cache.New[string, int](128)
//	c.Set("key", 42)
//	v, ok := c.Get("key")
//
// Values are created outside the cache lock by GetOrCreate, so a create
// function may itself consult the same cache (include hashing recurses
// through FileHash this way).
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
