package llm

// NotesToolName is the CFG tool that receives continuation note lines.
const NotesToolName = "write_continuation"

// GetNotesGrammar returns the Lark grammar for continuation output:
// one "PITCH START DURATION" line per note, newline separated.
func GetNotesGrammar() string {
	return `
// ---------- Start rule ----------
start: note_line (NL note_line)* NL?

// ---------- Note line ----------
// pitch, start and duration in quarter-length units
note_line: PITCH SP NUMBER SP NUMBER

// ---------- Terminals ----------
PITCH: /[A-G][#b]?-?\d/ | /\d{1,3}/
NUMBER: /\d+(\.\d+)?/
SP: " "
NL: "\n"
`
}

// NotesGrammarConfig returns the CFG configuration for note-line output.
func NotesGrammarConfig() *CFGConfig {
	return &CFGConfig{
		ToolName:    NotesToolName,
		Description: "Writes the continuation notes, one 'PITCH START DURATION' line per note. Pitch is a note name such as C4 or F#3.",
		Grammar:     GetNotesGrammar(),
		Syntax:      "lark",
	}
}
