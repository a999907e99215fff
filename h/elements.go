package h

import gh "maragu.dev/gomponents/html"

func Div(children ...H) H     { return gh.Div(retype(children)...) }
func Section(children ...H) H { return gh.Section(retype(children)...) }
func H1(children ...H) H      { return gh.H1(retype(children)...) }
func H2(children ...H) H      { return gh.H2(retype(children)...) }
func H3(children ...H) H      { return gh.H3(retype(children)...) }
func P(children ...H) H       { return gh.P(retype(children)...) }
func Span(children ...H) H    { return gh.Span(retype(children)...) }
func Small(children ...H) H   { return gh.Small(retype(children)...) }
func Code(children ...H) H    { return gh.Code(retype(children)...) }
func Ul(children ...H) H      { return gh.Ul(retype(children)...) }
func Li(children ...H) H      { return gh.Li(retype(children)...) }
func Button(children ...H) H  { return gh.Button(retype(children)...) }
func Script(children ...H) H  { return gh.Script(retype(children)...) }
func Meta(children ...H) H    { return gh.Meta(retype(children)...) }
func Link(children ...H) H    { return gh.Link(retype(children)...) }
func StyleEl(children ...H) H { return gh.StyleEl(retype(children)...) }
