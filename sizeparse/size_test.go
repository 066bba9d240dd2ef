package sizeparse

import (
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    datasize.ByteSize
		wantErr bool
	}{
		{name: "mebibytes", input: "5MiB", want: 5 * 1024 * 1024},
		{name: "decimal megabytes with padding", input: " 5 MB ", want: 5_000_000},
		{name: "decimal megabytes no padding", input: "5MB", want: 5_000_000},
		{name: "bytes no unit", input: "1024", want: 1024},
		{name: "kilobytes decimal", input: "5kB", want: 5000},
		{name: "unrecognised unit KB", input: "5KB", wantErr: true},
		{name: "non numeric", input: "five", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				var badLiteral *BadSizeLiteral
				assert.ErrorAs(t, err, &badLiteral)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSizeEquivalence(t *testing.T) {
	withSpace, err := ParseSize("5 MB")
	require.NoError(t, err)
	withoutSpace, err := ParseSize("5MB")
	require.NoError(t, err)
	assert.Equal(t, withoutSpace, withSpace)
}
