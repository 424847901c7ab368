package blade

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslateExprVariables(t *testing.T) {
	u := &unit{}
	cases := []struct{ in, want string }{
		{`$name`, `$__scope.name`},
		{`$user.email`, `$__scope.user.email`},
		{`$loop.Index`, `$loop.Index`},
		{`len $items`, `len $__scope.items`},
		{`$a and $b`, `$__scope.a and $__scope.b`},
		{`printf "%s!" $name`, `printf "%s!" $__scope.name`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, u.translateExpr(tc.in), "input %q", tc.in)
	}
}

func TestTranslateExprLoopLocals(t *testing.T) {
	u := &unit{vars: []string{"item", "k"}}
	assert.Equal(t, `$item.title`, u.translateExpr(`$item.title`))
	assert.Equal(t, `$k`, u.translateExpr(`$k`))
	assert.Equal(t, `$__scope.other`, u.translateExpr(`$other`))
}

func TestTranslateExprSingleQuotedStrings(t *testing.T) {
	u := &unit{}
	assert.Equal(t, `"hello"`, u.translateExpr(`'hello'`))
	assert.Equal(t, `eq $__scope.x "a b"`, u.translateExpr(`eq $x 'a b'`))
	assert.Equal(t, `"it\"s"`, u.translateExpr(`'it"s'`))
	// A $ inside a string literal is not a variable.
	assert.Equal(t, `"$cost"`, u.translateExpr(`'$cost'`))
}

func TestTranslateExprDoubleQuotedUntouched(t *testing.T) {
	u := &unit{}
	assert.Equal(t, `eq $__scope.x "keep $this"`, u.translateExpr(`eq $x "keep $this"`))
}

func TestTranslateExprMessage(t *testing.T) {
	u := &unit{errField: []string{"email"}}
	assert.Equal(t, `(errorMsg $__scope "email")`, u.translateExpr(`$message`))
}

func TestTranslateArgs(t *testing.T) {
	u := &unit{}
	assert.Equal(t, ` ("class") ("btn")`, u.translateArgs(`('class', 'btn')`))
	assert.Equal(t, ` ($__scope.cls)`, u.translateArgs(`($cls)`))
}

func TestStringArg(t *testing.T) {
	for in, want := range map[string]string{
		`'pages.home'`: "pages.home",
		`"layout"`:     "layout",
		` 'x' `:        "x",
	} {
		got, ok := stringArg(in)
		assert.True(t, ok, "input %q", in)
		assert.Equal(t, want, got)
	}
	for _, in := range []string{`$var`, `concat('a')`, `'unterminated`, ``} {
		_, ok := stringArg(in)
		assert.False(t, ok, "input %q", in)
	}
}
