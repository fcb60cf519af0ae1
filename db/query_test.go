package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatRowCount(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{42, "42"},
		{999, "999"},
		{1000, "1k"},
		{1499, "1k"},
		{1500, "2k"},
		{999499, "999k"},
		{999500, "1M"},
		{10000000, "10M"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatRowCount(c.in), "input %d", c.in)
	}
}
