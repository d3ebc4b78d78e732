package logger

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	llmMu      sync.Mutex
	llmWriter  io.Writer
	llmEnabled bool
)

// SetLLMWriter sets the destination for raw oracle request/response dumps.
// Pass nil to disable the writer entirely.
func SetLLMWriter(w io.Writer) {
	llmMu.Lock()
	llmWriter = w
	llmMu.Unlock()
}

// EnableLLMPayloadDump toggles payload dumping independently of the writer.
func EnableLLMPayloadDump(enabled bool) {
	llmMu.Lock()
	llmEnabled = enabled
	llmMu.Unlock()
}

// DumpLLM writes one tagged payload block to the LLM log, if configured.
// Payloads never go to the main log to keep it readable.
func DumpLLM(tag, payload string) {
	llmMu.Lock()
	w := llmWriter
	enabled := llmEnabled
	llmMu.Unlock()
	if !enabled || w == nil {
		return
	}
	ts := time.Now().UTC().Format(time.RFC3339)
	fmt.Fprintf(w, "===== %s %s =====\n%s\n", ts, tag, payload)
}
