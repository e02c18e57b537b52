package steve

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	db, err := Open("steve:secret@tcp(localhost:3306)/stevedb")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open("not a dsn")
	require.Error(t, err)
}
