package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/testutil/testlog"
)

func TestStructuralAcceptsCallLines(t *testing.T) {
	testlog.Start(t)
	v := NewStructural(0)
	res := v.Validate("clear()\nfr(10,10,20,20)\n\n// outline\nstroke(\"#f00\");")
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestStructuralRejectsWithLineErrors(t *testing.T) {
	testlog.Start(t)
	v := NewStructural(0)
	res := v.Validate("clear()\ndraw a box\nfr((1,2)")
	require.False(t, res.Valid)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "line 2")
	assert.Contains(t, res.Errors[1], "unbalanced")
}

func TestStructuralRejectsEmptyAndOversized(t *testing.T) {
	testlog.Start(t)
	v := NewStructural(16)
	assert.False(t, v.Validate("  \n ").Valid)
	res := v.Validate("fr(" + strings.Repeat("1,", 20) + "1)")
	require.False(t, res.Valid)
	assert.Contains(t, res.Errors[0], "exceed 16 bytes")
}

func TestStructuralCapsErrorList(t *testing.T) {
	testlog.Start(t)
	v := NewStructural(0)
	v.MaxErrors = 3
	res := v.Validate(strings.Repeat("nope\n", 10))
	assert.Len(t, res.Errors, 4)
}

func TestFuncAdapter(t *testing.T) {
	testlog.Start(t)
	var v Validator = Func(func(string) Result { return Result{Errors: []string{"no"}} })
	assert.Equal(t, []string{"no"}, v.Validate("clear()").Errors)
}
