package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanHTMLKeepsStructure(t *testing.T) {
	html := `<html><head><style>.x{color:red}</style><title>ignored</title></head>
	<body>
	  <div>Hello&nbsp;&amp; welcome&#8203;</div>
	  <h2>Launches</h2>
	  <p>First    paragraph<br>second line</p>
	  <ul><li>one</li><li>two</li></ul>
	  <script>alert(1)</script>
	</body></html>`

	got := CleanHTML(html)

	want := "Hello & welcome\n\nLaunches\n\nFirst paragraph\nsecond line\n\n• one\n• two"
	assert.Equal(t, want, got)
}

func TestPlainTextNormalizesPlainBodies(t *testing.T) {
	body := "Line one  \r\n\r\n\r\n\r\n  Line   two\n"

	assert.Equal(t, "Line one\n\nLine two", PlainText(body, false))
}

func TestCleanHTMLEmpty(t *testing.T) {
	assert.Equal(t, "", CleanHTML(""))
}
