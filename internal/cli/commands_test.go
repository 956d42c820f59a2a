package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAllocateCommand(t *testing.T) {
	out, err := execute(t, "allocate", "--total", "100", "--split", "equal", "--participants", `["a","b","c"]`)
	require.NoError(t, err)
	assert.Equal(t, "a\t33.33\nb\t33.33\nc\t33.34\n", out)

	out, err = execute(t, "allocate", "--format", "json", "--total", "50", "--split", "percentage",
		"--participants", `[{"user_id":"a","percentage":60},{"user_id":"b","percentage":40}]`)
	require.NoError(t, err)
	var shares []struct {
		User   string `json:"user_id"`
		Amount string `json:"amount"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &shares))
	require.Len(t, shares, 2)
	assert.Equal(t, "30.00", shares[0].Amount)
	assert.Equal(t, "20.00", shares[1].Amount)

	out, err = execute(t, "allocate", "--total", "30", "--split", "preference",
		"--participants", `{"tags":["veg"]}`, "--member", "a:veg,spicy", "--member", "b", "--member", "c:VEG")
	require.NoError(t, err)
	assert.Equal(t, "a\t15.00\nc\t15.00\n", out)
}

func TestAllocateCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad total", []string{"--total", "ten", "--participants", `["a"]`}, "invalid --total"},
		{"zero total", []string{"--total", "0", "--participants", `["a"]`}, "invalid --total"},
		{"bad split", []string{"--total", "10", "--split", "random", "--participants", `["a"]`}, "invalid split type"},
		{"custom mismatch", []string{"--total", "10", "--split", "custom", "--participants", `[{"user_id":"a","amount":4}]`}, "sum to the total"},
		{"no match", []string{"--total", "10", "--split", "preference", "--participants", `["vegan"]`, "--member", "a:veg"}, "no users match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"allocate"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSimplifyCommand(t *testing.T) {
	out, err := execute(t, "simplify", "a=60", "b=-15", "c=-45")
	require.NoError(t, err)
	assert.Equal(t, "c -> a: 45.00\nb -> a: 15.00\n", out)

	out, err = execute(t, "simplify", "--format", "json", "a=0", "b=0")
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))

	_, err = execute(t, "simplify", "a=10", "b=-5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not sum to zero")

	_, err = execute(t, "simplify", "a=10", "a=-10")
	require.Error(t, err)

	_, err = execute(t, "simplify", "a:10")
	require.Error(t, err)
}

func TestMigrateCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "splitsmart.db")

	out, err := execute(t, "migrate", "--db", dbPath, "--format", "json")
	require.NoError(t, err)
	var res struct {
		Version uint `json:"version"`
		Dirty   bool `json:"dirty"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Greater(t, res.Version, uint(0))
	assert.False(t, res.Dirty)

	// Running again is a no-op.
	out, err = execute(t, "migrate", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "schema version")
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := execute(t, "simplify", "--format", "yaml", "a=0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
