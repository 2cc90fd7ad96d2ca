package predictor

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	randomforest "github.com/malaschitz/randomForest"
	"github.com/rs/zerolog/log"
)

// classes maps the forest class index to the trade vote.
var classes = []int{-1, 0, 1}

// Forest runs inference on a pre-trained random forest.
// Class 0 is a sell, class 1 a hold and class 2 a buy.
type Forest struct {
	forest *randomforest.Forest
}

// NewForest wraps a trained forest.
func NewForest(forest *randomforest.Forest) (*Forest, error) {
	if forest == nil || len(forest.Trees) == 0 {
		return nil, fmt.Errorf("forest has no trees")
	}
	if forest.Classes > len(classes) {
		return nil, fmt.Errorf("forest has %d classes, expected at most %d", forest.Classes, len(classes))
	}
	return &Forest{forest: forest}, nil
}

// LoadForest loads a serialised forest from the given file.
// Files with a .json extension are decoded as json, anything else as gob.
func LoadForest(path string) (*Forest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read forest '%s': %w", path, err)
	}
	forest := new(randomforest.Forest)
	if filepath.Ext(path) == ".json" {
		err = json.Unmarshal(b, forest)
	} else {
		err = gob.NewDecoder(bytes.NewReader(b)).Decode(forest)
	}
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal forest '%s': %w", path, err)
	}
	f, err := NewForest(forest)
	if err != nil {
		return nil, fmt.Errorf("invalid forest '%s': %w", path, err)
	}
	log.Info().
		Str("path", path).
		Int("trees", len(forest.Trees)).
		Int("features", forest.Features).
		Msg("loaded forest")
	return f, nil
}

// Predict returns the vote of the class with the most trees behind it.
func (f *Forest) Predict(x []float64) (int, error) {
	if f.forest.Features > 0 && len(x) != f.forest.Features {
		return 0, fmt.Errorf("input has %d features, forest expects %d", len(x), f.forest.Features)
	}
	votes := f.forest.Vote(x)
	if len(votes) == 0 {
		return 0, fmt.Errorf("forest returned no votes")
	}
	best := 0
	for i, v := range votes {
		if v > votes[best] {
			best = i
		}
	}
	if best >= len(classes) {
		return 0, fmt.Errorf("unexpected class %d", best)
	}
	return classes[best], nil
}
