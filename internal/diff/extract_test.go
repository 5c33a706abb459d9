package diff

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleDiff = `diff --git a/app.py b/app.py
index 83db48f..bf269f4 100644
--- a/app.py
+++ b/app.py
@@ -1,7 +1,9 @@
+import os
+from flask import Flask
+# set up the app
+app = Flask(__name__)
+app.run(debug=True)
-print("hello")
-
-# old comment
 unchanged line
`

func TestExtract_ClassifiesAndFilters(t *testing.T) {
	ch := Extract(sampleDiff)
	assert.Equal(t, []string{"app = Flask(__name__)", "app.run(debug=True)"}, ch.Added)
	assert.Equal(t, []string{`print("hello")`}, ch.Removed)
}

func TestExtract_EmptyInput(t *testing.T) {
	ch := Extract("")
	assert.Empty(t, ch.Added)
	assert.Empty(t, ch.Removed)
	assert.True(t, ch.Empty())
}

func TestExtract_SkipsNoisePrefixes(t *testing.T) {
	noisy := []string{
		"import os",
		"from x import y",
		"#include <stdio.h>",
		"// a comment",
		"# a comment",
		"/* block",
		"* continuation",
		`""" docstring`,
		"''' docstring",
		"-- sql comment",
	}
	var b strings.Builder
	for _, l := range noisy {
		fmt.Fprintf(&b, "+%s\n-%s\n", l, l)
	}
	ch := Extract(b.String())
	assert.Empty(t, ch.Added)
	assert.Empty(t, ch.Removed)
}

func TestExtract_CapsEachSide(t *testing.T) {
	var b strings.Builder
	for i := 0; i < MaxLines*3; i++ {
		fmt.Fprintf(&b, "+added_%d = %d\n", i, i)
		fmt.Fprintf(&b, "-removed_%d = %d\n", i, i)
	}
	ch := Extract(b.String())
	assert.Len(t, ch.Added, MaxLines)
	assert.Len(t, ch.Removed, MaxLines)
	// Truncation keeps the first N in order.
	assert.Equal(t, "added_0 = 0", ch.Added[0])
	assert.Equal(t, fmt.Sprintf("added_%d = %d", MaxLines-1, MaxLines-1), ch.Added[MaxLines-1])
}

func TestExtract_NeverEmitsBlankLines(t *testing.T) {
	ch := Extract("+   \n+\t\n-  \n+real line\n")
	assert.Equal(t, []string{"real line"}, ch.Added)
	assert.Empty(t, ch.Removed)
}

func TestExtract_FileHeadersAreNotContent(t *testing.T) {
	ch := Extract("--- a/file.go\n+++ b/file.go\n+x := 1\n")
	assert.Equal(t, []string{"x := 1"}, ch.Added)
	assert.Empty(t, ch.Removed)
}
