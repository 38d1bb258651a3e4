package table_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omniql-engine/sqlcore/table"
)

func TestLikeToRegexp(t *testing.T) {
	re := table.LikeToRegexp("a%c_")
	assert.True(t, re.MatchString("abcd"))
	assert.False(t, re.MatchString("abc"))
	assert.False(t, re.MatchString("xbcd"))
}
