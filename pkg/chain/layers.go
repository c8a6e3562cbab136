package chain

import "github.com/wardenmcp/toolgate/internal/apierr"

// layerize groups steps into layers — each layer is the set of steps whose
// dependencies have all appeared in a prior layer (spec.md §4.7 topological
// sort). A cycle fails with CIRCULAR_DEPENDENCY.
func layerize(steps []Step) ([][]string, error) {
	deps := make(map[string][]string, len(steps))
	for _, s := range steps {
		deps[s.ID] = s.DependsOn
	}

	done := make(map[string]bool, len(steps))
	var layers [][]string

	for len(done) < len(steps) {
		var layer []string
		for _, s := range steps {
			if done[s.ID] {
				continue
			}
			if allDone(deps[s.ID], done) {
				layer = append(layer, s.ID)
			}
		}
		if len(layer) == 0 {
			return nil, apierr.WithChainCode("CIRCULAR_DEPENDENCY", "chain has a dependency cycle")
		}
		for _, id := range layer {
			done[id] = true
		}
		layers = append(layers, layer)
	}

	return layers, nil
}

func allDone(deps []string, done map[string]bool) bool {
	for _, d := range deps {
		if !done[d] {
			return false
		}
	}
	return true
}
