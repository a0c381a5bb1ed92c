package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_TableDriven(t *testing.T) {
	bindings := map[string]string{
		"short":        "XSS_FOUND",
		"long":         "reflected payload in query parameter",
		"scanner_name": "scanA",
	}

	tests := []struct {
		name    string
		expr    string
		want    bool
		wantErr bool
	}{
		{name: "string equality true", expr: "short == 'XSS_FOUND'", want: true},
		{name: "string equality false", expr: "short == 'SQLI_FOUND'", want: false},
		{name: "double quoted string", expr: `short == "XSS_FOUND"`, want: true},
		{name: "inequality", expr: "short != 'SQLI_FOUND'", want: true},
		{name: "and both true", expr: "short == 'XSS_FOUND' and scanner_name == 'scanA'", want: true},
		{name: "and one false", expr: "short == 'XSS_FOUND' and scanner_name == 'scanB'", want: false},
		{name: "or", expr: "short == 'SQLI_FOUND' or scanner_name == 'scanA'", want: true},
		{name: "not", expr: "not short == 'SQLI_FOUND'", want: true},
		{name: "double not", expr: "not not short == 'XSS_FOUND'", want: true},
		{name: "parentheses", expr: "(short == 'SQLI_FOUND' or short == 'XSS_FOUND') and scanner_name == 'scanA'", want: true},
		{name: "literal comparison", expr: "1 == 1", want: true},
		{name: "literal inequality", expr: "1 == 2", want: false},
		{name: "boolean literal", expr: "true", want: true},
		{name: "python style boolean literal", expr: "True", want: true},
		{name: "mixed types never equal", expr: "short == 1", want: false},
		{name: "arithmetic rejected", expr: "1 + 1", wantErr: true},
		{name: "bare string literal", expr: "'x'", wantErr: true},
		{name: "bare identifier", expr: "short", wantErr: true},
		{name: "unknown identifier", expr: "severity == 'high'", wantErr: true},
		{name: "call syntax rejected", expr: "len(short) == 3", wantErr: true},
		{name: "attribute access rejected", expr: "short.upper == 'X'", wantErr: true},
		{name: "unterminated string", expr: "short == 'x", wantErr: true},
		{name: "dangling operator", expr: "short ==", wantErr: true},
		{name: "empty expression", expr: "", wantErr: true},
		{name: "and on non boolean", expr: "'a' and 'b'", wantErr: true},
		{name: "not on non boolean", expr: "not 'a'", wantErr: true},
		{name: "trailing garbage", expr: "short == 'XSS_FOUND' extra", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.expr, bindings)
			if tt.wantErr {
				require.Error(t, err)
				var evalErr *Error
				assert.ErrorAs(t, err, &evalErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestEvaluate_Deterministic verifies the same expression and bindings
// always produce the same result.
func TestEvaluate_Deterministic(t *testing.T) {
	bindings := map[string]string{"short": "x", "long": "", "scanner_name": ""}
	for i := 0; i < 100; i++ {
		got, err := Evaluate("short == 'x' or not long == ''", bindings)
		require.NoError(t, err)
		assert.True(t, got)
	}
}

// TestEvaluate_NumberComparison covers numeric literal semantics.
func TestEvaluate_NumberComparison(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{"1.5 == 1.5", true},
		{"-1 == -1", true},
		{"0 != 1", true},
		{"2 == 2.0", true},
	}
	for _, tt := range tests {
		got, err := Evaluate(tt.expr, nil)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, got, tt.expr)
	}
}
