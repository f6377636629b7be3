package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash(t *testing.T) {
	assert.Equal(t, "ef46db3751d8e999", Hash())
	assert.Equal(t, "26c7827d889f6da3", Hash("hello"))
	assert.Equal(t, "d481b75d0fa4abff", Hash("hello", 42, true))
	assert.Equal(t, Hash("artists", "name"), Hash("artists", "name"))
	assert.NotEqual(t, Hash("artists", "name"), Hash("artists", "title"))
}

func TestModulo(t *testing.T) {
	assert.Equal(t, 0, Modulo("1", 1))
	assert.Equal(t, 0, Modulo("anything", 0))
	assert.Equal(t, 1, Modulo("1", 3))
	assert.Equal(t, 5, Modulo("1 2 3 4", 10))
	for _, key := range []string{"artists.1", "event.42", ""} {
		n := Modulo(key, 7)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 7)
		assert.Equal(t, n, Modulo(key, 7))
	}
}
