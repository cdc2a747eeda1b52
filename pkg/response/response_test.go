package response

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginated(t *testing.T) {
	res := Paginated(http.StatusOK, []string{"a", "b"}, 5, 1, 2)
	assert.Equal(t, "success", res.Status)

	page, ok := res.Data.(Page)
	require.True(t, ok)
	assert.EqualValues(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)

	empty := Paginated(http.StatusOK, []string{}, 0, 1, 20).Data.(Page)
	assert.Equal(t, 0, empty.TotalPages)
}

func TestError(t *testing.T) {
	res := Error(http.StatusConflict, "user already has this role")
	assert.Equal(t, "error", res.Status)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Nil(t, res.Data)
}
