package gdbdriver

import "afltriage-go/internal/model"

// Wire schema for the triage script's JSON payload, read between the
// backtrace markers: {"result": "SUCCESS"|"ERROR_TARGET_NOT_RUNNING",
// "context": <CrashContext or null>}.

const (
	resultSuccess               = "SUCCESS"
	resultErrorTargetNotRunning = "ERROR_TARGET_NOT_RUNNING"
)

type wireResult struct {
	Result  string       `json:"result"`
	Context *wireContext `json:"context"`
}

type wireContext struct {
	StopInfo      wireStopInfo `json:"stop_info"`
	ArchInfo      wireArchInfo `json:"arch_info"`
	PrimaryThread wireThread   `json:"primary_thread"`
	OtherThreads  []wireThread `json:"other_threads"`
}

type wireStopInfo struct {
	SignalName      string  `json:"signal_name"`
	SignalNumber    int     `json:"signal_number"`
	SignalCode      int     `json:"signal_code"`
	FaultingAddress *uint64 `json:"faulting_address"`
}

type wireArchInfo struct {
	AddressBits  int    `json:"address_bits"`
	Architecture string `json:"architecture"`
}

type wireThread struct {
	TID         int            `json:"tid"`
	Backtrace   []wireFrame    `json:"backtrace"`
	Disassembly *string        `json:"disassembly"`
	Registers   []wireRegister `json:"registers"`
}

type wireFrame struct {
	Address         uint64      `json:"address"`
	RelativeAddress uint64      `json:"relative_address"`
	Module          string      `json:"module"`
	ModuleAddress   string      `json:"module_address"`
	Symbol          *wireSymbol `json:"symbol"`
}

type wireSymbol struct {
	Name      *string        `json:"name"`
	Mangled   *string        `json:"mangled"`
	Signature *string        `json:"signature"`
	File      *string        `json:"file"`
	Line      *int           `json:"line"`
	CallSite  []wireFrame    `json:"call_site"`
	Args      []wireVariable `json:"args"`
	Locals    []wireVariable `json:"locals"`
}

type wireVariable struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

type wireRegister struct {
	Name   string `json:"name"`
	Value  uint64 `json:"value"`
	Pretty string `json:"pretty"`
	Type   string `json:"type"`
	Size   int    `json:"size"`
}

func (c wireContext) toModel() model.CrashContext {
	others := make([]model.Thread, 0, len(c.OtherThreads))
	for _, t := range c.OtherThreads {
		others = append(others, t.toModel())
	}
	return model.CrashContext{
		StopInfo: model.StopInfo{
			SignalName:      c.StopInfo.SignalName,
			SignalNumber:    c.StopInfo.SignalNumber,
			SignalCode:      c.StopInfo.SignalCode,
			FaultingAddress: c.StopInfo.FaultingAddress,
		},
		ArchInfo: model.ArchInfo{
			AddressBits:  c.ArchInfo.AddressBits,
			Architecture: c.ArchInfo.Architecture,
		},
		PrimaryThread: c.PrimaryThread.toModel(),
		OtherThreads:  others,
	}
}

func (t wireThread) toModel() model.Thread {
	frames := make([]model.Frame, 0, len(t.Backtrace))
	for _, f := range t.Backtrace {
		frames = append(frames, f.toModel())
	}
	regs := make([]model.Register, 0, len(t.Registers))
	for _, r := range t.Registers {
		regs = append(regs, model.Register{
			Name: r.Name, Value: r.Value, Pretty: r.Pretty, Type: r.Type, Size: r.Size,
		})
	}
	return model.Thread{
		TID:         t.TID,
		Backtrace:   frames,
		Disassembly: t.Disassembly,
		Registers:   regs,
	}
}

func (f wireFrame) toModel() model.Frame {
	var sym *model.Symbol
	if f.Symbol != nil {
		s := f.Symbol.toModel()
		sym = &s
	}
	return model.Frame{
		Address:         f.Address,
		RelativeAddress: f.RelativeAddress,
		Module:          f.Module,
		ModuleAddress:   f.ModuleAddress,
		Symbol:          sym,
	}
}

func (s wireSymbol) toModel() model.Symbol {
	callSite := make([]model.Frame, 0, len(s.CallSite))
	for _, f := range s.CallSite {
		callSite = append(callSite, f.toModel())
	}
	return model.Symbol{
		Name:      s.Name,
		Mangled:   s.Mangled,
		Signature: s.Signature,
		File:      s.File,
		Line:      s.Line,
		CallSite:  callSite,
		Args:      toVariables(s.Args),
		Locals:    toVariables(s.Locals),
	}
}

func toVariables(in []wireVariable) []model.Variable {
	out := make([]model.Variable, 0, len(in))
	for _, v := range in {
		out = append(out, model.Variable{Type: v.Type, Name: v.Name, Value: v.Value})
	}
	return out
}
