package schema

// Algorithm identifiers understood by the modelling service.
const (
	KNN          = "knn"
	SVC          = "svc"
	RandomForest = "random_forest"
)

// Registry maps algorithm ids to their specs, preserving registration order.
type Registry struct {
	order []string
	byID  map[string]AlgorithmSpec
}

// NewRegistry builds a registry from specs. Later duplicates replace earlier ones.
func NewRegistry(specs ...AlgorithmSpec) *Registry {
	r := &Registry{byID: make(map[string]AlgorithmSpec, len(specs))}
	for _, s := range specs {
		if _, exists := r.byID[s.ID]; !exists {
			r.order = append(r.order, s.ID)
		}
		r.byID[s.ID] = s
	}
	return r
}

// Lookup returns the spec registered under id.
func (r *Registry) Lookup(id string) (AlgorithmSpec, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// Algorithms returns every spec in registration order.
func (r *Registry) Algorithms() []AlgorithmSpec {
	out := make([]AlgorithmSpec, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns the registered ids in registration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// DefaultRegistry returns the algorithms offered by the modelling service.
func DefaultRegistry() *Registry {
	return NewRegistry(
		AlgorithmSpec{
			ID:          KNN,
			DisplayName: "K Nearest Neighbors",
			Parameters: []ParameterSpec{
				{Name: "n_neighbors", DisplayName: "Neighbors number", Default: Int(5), Type: TypeInt},
				{Name: "weights", DisplayName: "Weights", Default: String("uniform"), Type: TypeChoice,
					Choices: []string{"uniform", "distance"}},
				{Name: "algorithm", DisplayName: "Algorithm", Default: String("auto"), Type: TypeChoice,
					Choices: []string{"auto", "ball_tree", "kd_tree", "brute"}},
			},
		},
		AlgorithmSpec{
			ID:          SVC,
			DisplayName: "Support Vector Machine",
			Parameters: []ParameterSpec{
				{Name: "C", DisplayName: "Penalty Parameter C", Default: Float(1.0), Type: TypeFloat},
				{Name: "kernel", DisplayName: "Kernel Type", Default: String("rbf"), Type: TypeChoice,
					Choices: []string{"linear", "poly", "rbf", "sigmoid"}},
				{Name: "degree", DisplayName: "Degree of the Polynomial Kernel Function", Default: Int(3), Type: TypeInt},
			},
		},
		AlgorithmSpec{
			ID:          RandomForest,
			DisplayName: "Random Forest",
			Parameters: []ParameterSpec{
				{Name: "n_estimators", DisplayName: "Number of estimators", Default: Int(100), Type: TypeInt},
				{Name: "criterion", DisplayName: "Criterion", Default: String("gini"), Type: TypeChoice,
					Choices: []string{"gini", "entropy"}},
				{Name: "max_depth", DisplayName: "The Maximum Depth of the Tree", Default: Null(), Type: TypeInt},
			},
		},
	)
}
