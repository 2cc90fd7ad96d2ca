package json

import (
	"errors"
	"testing"

	"github.com/drakos74/futures-bot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorage(t *testing.T) {
	storage.DefaultDir = t.TempDir()

	type test struct {
		key   storage.Key
		value map[string]float64
	}

	tests := map[string]test{
		"simple": {
			key:   storage.Key{Pair: "BTCUSDT", Label: "ledger"},
			value: map[string]float64{"a": 1},
		},
		"hashed": {
			key:   storage.Key{Hash: 12, Pair: "ETHUSDT", Label: "history"},
			value: map[string]float64{"a": 1, "b": -2.5},
		},
	}

	st, err := BlobShard("table")("shard")
	require.NoError(t, err)
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var v map[string]float64
			err := st.Load(tt.key, &v)
			assert.True(t, errors.Is(err, storage.NotFoundErr))

			require.NoError(t, st.Store(tt.key, tt.value))
			require.NoError(t, st.Load(tt.key, &v))
			assert.Equal(t, tt.value, v)

			// overwrite
			tt.value["c"] = 3
			require.NoError(t, st.Store(tt.key, tt.value))
			v = nil
			require.NoError(t, st.Load(tt.key, &v))
			assert.Equal(t, tt.value, v)
		})
	}
}
