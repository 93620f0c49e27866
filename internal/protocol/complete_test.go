package protocol

import "testing"

func TestParseLine(t *testing.T) {
	cases := []struct {
		line  string
		token string
		arg   string
		ok    bool
	}{
		{`>Step<`, RequestStep, "", true},
		{`>Break<{"file":"a.lua","line":10,"set":true}`, RequestBreak, `{"file":"a.lua","line":10,"set":true}`, true},
		{`x = 5`, "", "", false},
		{`> 5`, "", "", false}, // no closing marker: free text
		{``, "", "", false},
	}
	for _, c := range cases {
		token, arg, ok := ParseLine(c.line)
		if token != c.token || arg != c.arg || ok != c.ok {
			t.Errorf("ParseLine(%q) = (%q, %q, %v), want (%q, %q, %v)",
				c.line, token, arg, ok, c.token, c.arg, c.ok)
		}
	}
}

func TestInputComplete(t *testing.T) {
	complete := []string{
		"1",
		"x = 5",
		"print('hi')",
		"for i = 1, 3 do print(i) end",
		"function f() return 1 end",
		"t = { a = 1, b = 2 }",
		"repeat x = x - 1 until x == 0",
		"x = 'unbalanced ( inside string'",
		"y = 2 -- trailing ( comment",
		"if a then b() elseif c then d() end",
		"if a then b() elseif c then d() elseif e then f() else g() end",
	}
	for _, text := range complete {
		if !InputComplete(text) {
			t.Errorf("%q judged incomplete", text)
		}
	}

	incomplete := []string{
		"",
		"1 +",
		"x ==",
		"a and",
		"f(1,",
		"function f()",
		"for i = 1, 3 do",
		"if x > 1 then",
		"t = { a = 1,",
		"s = 1 ..",
		"if a then b() elseif c then",
	}
	for _, text := range incomplete {
		if InputComplete(text) {
			t.Errorf("%q judged complete", text)
		}
	}
}

func TestInputCompleteAcrossLines(t *testing.T) {
	// "1+" then "1" forms the complete unit "1+\n1"
	buffer := []string{"1+"}
	if InputComplete(JoinBuffer(buffer)) {
		t.Fatalf("dangling operator judged complete")
	}
	buffer = append(buffer, "1")
	if !InputComplete(JoinBuffer(buffer)) {
		t.Fatalf("buffered continuation still judged incomplete")
	}

	block := []string{"function add(a, b)", "return a + b"}
	if InputComplete(JoinBuffer(block)) {
		t.Fatalf("open function body judged complete")
	}
	block = append(block, "end")
	if !InputComplete(JoinBuffer(block)) {
		t.Fatalf("closed function body judged incomplete")
	}
}
