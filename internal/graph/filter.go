package graph

// Filter restricts a topological order to the transitive closure of the
// requested target names (component C3). An empty names list returns the
// full order unchanged. The relative order of the full topological order
// is preserved, so the result remains a valid topological order.
func Filter(d *DAG, names []string) ([]*Target, error) {
	if len(names) == 0 {
		return d.Order, nil
	}

	closure := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		if closure[name] {
			return nil
		}
		t, ok := d.Target(name)
		if !ok {
			return &UnknownTargetError{Name: name}
		}
		closure[name] = true
		for _, dep := range t.Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	var out []*Target
	for _, t := range d.Order {
		if closure[t.Name] {
			out = append(out, t)
		}
	}
	return out, nil
}
