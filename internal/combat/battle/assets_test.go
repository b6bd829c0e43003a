package battle

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feiai2017/gridcombat/internal/catalog"
	"github.com/feiai2017/gridcombat/internal/util"
)

var assetsDir = filepath.Join("..", "..", "..", "assets")

func TestBundledSetupPlaysOut(t *testing.T) {
	cat, err := catalog.LoadDir(filepath.Join(assetsDir, "catalog"))
	require.NoError(t, err)
	setup, err := LoadSetup(filepath.Join(assetsDir, "setups", "ambush.yaml"))
	require.NoError(t, err)

	e := NewEngine(cat)
	for seed := int64(1); seed <= 5; seed++ {
		out, s, err := e.Simulate(context.Background(), setup, util.New(seed), SimOptions{MaxTurns: 200})
		require.NoError(t, err, "seed %d", seed)
		assert.True(t, s.Over(), "seed %d", seed)
		assert.Positive(t, out.Turns, "seed %d", seed)
		assert.LessOrEqual(t, out.WavesCleared, len(setup.Waves))
	}
}
