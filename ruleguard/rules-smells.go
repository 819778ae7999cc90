package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// Consecutive guards with the same result can be merged:
	//   if a { return err }
	//   if b { return err }
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic or reducing algorithmic complexity`)
}

// logging keeps library code on the injected zerolog logger. cmd/ may print
// to its output writer.
func logging(m dsl.Matcher) {
	m.Import("log")

	m.Match(`log.Printf($*_)`, `log.Println($*_)`, `log.Print($*_)`, `log.Fatalf($*_)`).
		Where(!m.File().PkgPath.Matches(`/cmd/`)).
		Report(`use the injected zerolog.Logger instead of the standard log package`)

	m.Match(`fmt.Printf($*_)`, `fmt.Println($*_)`, `fmt.Print($*_)`).
		Where(!m.File().PkgPath.Matches(`/cmd/`)).
		Report(`library code must not write to stdout; log through zerolog`)
}

// errorsStyle prefers wrapping over flattening.
func errorsStyle(m dsl.Matcher) {
	m.Match(`errors.New(fmt.Sprintf($*args))`).
		Report(`use fmt.Errorf`).
		Suggest(`fmt.Errorf($args)`)

	m.Match(`fmt.Errorf($f, $*_, $err.Error())`).
		Where(m["err"].Type.Implements("error")).
		Report(`wrap $err with %w instead of flattening it with Error()`)
}

// streaming catches SSE writes that skip the flush.
func streaming(m dsl.Matcher) {
	m.Match(`fmt.Fprintf($w, "data: %s\n\n", $*_); $next`).
		Where(!m["next"].Text.Matches(`Flush`)).
		Report(`flush after writing an SSE event or the client will not see it`)
}
