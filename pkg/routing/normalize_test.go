package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		route string
		want  string
	}{
		{"/res/load.js", "/res"},
		{"/res/js/deep/app.js", "/res"},
		{"/api?x=getProjectData&y=http://example.com", "/api"},
		{"/gameIndex", "/gameIndex"},
		{"/api/extra?x=1", "/api/extra"},
		{"/res/app.js?v=2", "/res/app.js"},
		{"/preview?id=42", "/preview"},
		{"/res/", "/res"},
		{"/", "/"},
		{"", ""},
		{"/?a=b", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.route))
		})
	}
}
