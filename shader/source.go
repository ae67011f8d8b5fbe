package shader

// Source is an auxiliary source file a kernel depends on. Its text is served
// at VirtualPath while compiling and may itself depend on other sources.
type Source struct {
	VirtualPath  string
	Text         string
	Dependencies []*Source
}

// GatherSources flattens srcs and their dependencies into include order:
// dependencies before dependents, each virtual path once.
func GatherSources(srcs []*Source) []*Source {
	var out []*Source
	seen := make(map[string]struct{})
	var visit func([]*Source)
	visit = func(list []*Source) {
		for _, s := range list {
			if s == nil {
				continue
			}
			if _, ok := seen[s.VirtualPath]; ok {
				continue
			}
			seen[s.VirtualPath] = struct{}{}
			visit(s.Dependencies)
			out = append(out, s)
		}
	}
	visit(srcs)
	return out
}
