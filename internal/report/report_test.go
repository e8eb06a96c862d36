package report

import (
	"strings"
	"testing"

	"afltriage-go/internal/model"
)

func crashingSymbol(name string) *model.Symbol {
	return &model.Symbol{Name: &name}
}

func sampleContext() model.CrashContext {
	return model.CrashContext{
		StopInfo: model.StopInfo{SignalName: "SIGSEGV", SignalNumber: 11},
		ArchInfo: model.ArchInfo{AddressBits: 64, Architecture: "x86_64"},
		PrimaryThread: model.Thread{
			TID: 1,
			Backtrace: []model.Frame{
				{Module: "target", RelativeAddress: 0x1234, ModuleAddress: "0x1234", Symbol: crashingSymbol("vuln_func")},
				{Module: "libc.so.6", RelativeAddress: 0x5678, ModuleAddress: "0x5678"},
			},
			Registers: []model.Register{{Name: "rip", Pretty: "0x1234"}},
		},
	}
}

func TestBuildHeadlineAndFilename(t *testing.T) {
	cr := Build(sampleContext(), model.ChildOutput{})

	if !strings.Contains(cr.Headline, "SIGSEGV") || !strings.Contains(cr.Headline, "vuln_func") {
		t.Fatalf("headline %q missing signal/symbol", cr.Headline)
	}

	name := ReportFilename(cr)
	if !strings.HasPrefix(name, "afltriage_SIGSEGV_vuln_func_") || !strings.HasSuffix(name, ".txt") {
		t.Fatalf("unexpected filename: %s", name)
	}
}

func TestStackhashStableAcrossIdenticalBacktraces(t *testing.T) {
	a := Build(sampleContext(), model.ChildOutput{})
	b := Build(sampleContext(), model.ChildOutput{})
	if a.Stackhash != b.Stackhash {
		t.Fatalf("identical backtraces produced different stackhashes: %s != %s", a.Stackhash, b.Stackhash)
	}
}

func TestRenderFormats(t *testing.T) {
	cr := Build(sampleContext(), model.ChildOutput{Stdout: "hello\nworld\n"})

	for _, f := range []Format{FormatText, FormatMarkdown, FormatJSON} {
		body, err := Render(cr, f, 1, func(s string, n int) string { return s })
		if err != nil {
			t.Fatalf("Render format %v: %v", f, err)
		}
		if body == "" {
			t.Fatalf("Render format %v returned empty body", f)
		}
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": FormatText, "text": FormatText, "markdown": FormatMarkdown, "json": FormatJSON}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil {
			t.Fatalf("ParseFormat(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseFormat(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}
