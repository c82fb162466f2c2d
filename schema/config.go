package schema

import (
	"encoding/json"
	"sort"
)

// DefaultVectorSize is submitted when the word2vec vector size is left empty.
const DefaultVectorSize = 100

// GeneralParams are the algorithm-independent training inputs.
type GeneralParams struct {
	AlphabetSize int    `json:"alphabet_size"`
	VectorSize   int    `json:"word2vec_vector_size"`
	AlgorithmID  string `json:"algorithm"`
}

// TrainingConfig is the payload of a training session create request.
type TrainingConfig struct {
	GeneralParams   GeneralParams    `json:"general_params"`
	AlgorithmParams map[string]Value `json:"algorithm_params"`
}

// ParamNames returns the algorithm parameter names in sorted order.
func (c TrainingConfig) ParamNames() []string {
	names := make([]string, 0, len(c.AlgorithmParams))
	for name := range c.AlgorithmParams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy.
func (c TrainingConfig) Clone() TrainingConfig {
	out := c
	out.AlgorithmParams = make(map[string]Value, len(c.AlgorithmParams))
	for k, v := range c.AlgorithmParams {
		out.AlgorithmParams[k] = v
	}
	return out
}

// MarshalJSON always emits algorithm_params as an object, never null.
func (c TrainingConfig) MarshalJSON() ([]byte, error) {
	type plain TrainingConfig
	p := plain(c)
	if p.AlgorithmParams == nil {
		p.AlgorithmParams = map[string]Value{}
	}
	return json.Marshal(p)
}
