// Package console parses operator commands and prints coach notifications
// for the terminal session.
package console

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hammamikhairi/apexcoach/internal/logger"
)

// CommandType identifies an operator command.
type CommandType int

const (
	CommandUnknown CommandType = iota
	CommandVolume
	CommandMute
	CommandPause
	CommandResume
	CommandSpeed
	CommandStatus
	CommandSessions
	CommandQuit
	CommandHelp
)

// String returns a human-readable command name.
func (t CommandType) String() string {
	switch t {
	case CommandVolume:
		return "volume"
	case CommandMute:
		return "mute"
	case CommandPause:
		return "pause"
	case CommandResume:
		return "resume"
	case CommandSpeed:
		return "speed"
	case CommandStatus:
		return "status"
	case CommandSessions:
		return "sessions"
	case CommandQuit:
		return "quit"
	case CommandHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Command is one parsed operator input. Value carries the numeric argument
// for volume and speed commands.
type Command struct {
	Type  CommandType
	Value float64
	Raw   string
}

// Argument-carrying commands are matched before the keyword table.
var (
	volumePattern = regexp.MustCompile(`(?i)^(?:volume|vol|v)\s+([0-9]*\.?[0-9]+)$`)
	speedPattern  = regexp.MustCompile(`(?i)^(?:speed|x)\s+([0-9]*\.?[0-9]+)$`)
)

// Parser matches operator input to commands using simple patterns.
type Parser struct {
	log      *logger.Logger
	patterns []patternRule
}

type patternRule struct {
	regex *regexp.Regexp
	typ   CommandType
}

// NewParser creates a keyword-based command parser.
func NewParser(log *logger.Logger) *Parser {
	p := &Parser{log: log}
	p.patterns = []patternRule{
		{regexp.MustCompile(`(?i)^(mute|unmute|quiet|sound)$`), CommandMute},
		{regexp.MustCompile(`(?i)^(pause|hold|p)$`), CommandPause},
		{regexp.MustCompile(`(?i)^(resume|continue|unpause|play)$`), CommandResume},
		{regexp.MustCompile(`(?i)^(status|info|where|progress)$`), CommandStatus},
		{regexp.MustCompile(`(?i)^(sessions|list|history)$`), CommandSessions},
		{regexp.MustCompile(`(?i)^(quit|exit|stop|q)$`), CommandQuit},
		{regexp.MustCompile(`(?i)^(help|h|\?)$`), CommandHelp},
	}
	return p
}

// Parse converts operator input into a command.
func (p *Parser) Parse(input string) Command {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Command{Type: CommandUnknown}
	}

	p.log.Debug("parsing command: %q", trimmed)

	// Commands with a numeric argument.
	if m := volumePattern.FindStringSubmatch(trimmed); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.log.Debug("matched command: volume %.2f", v)
			return Command{Type: CommandVolume, Value: v, Raw: trimmed}
		}
	}
	if m := speedPattern.FindStringSubmatch(trimmed); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.log.Debug("matched command: speed %.2f", v)
			return Command{Type: CommandSpeed, Value: v, Raw: trimmed}
		}
	}

	// Keyword patterns.
	for _, rule := range p.patterns {
		if rule.regex.MatchString(trimmed) {
			p.log.Debug("matched command: %s", rule.typ)
			return Command{Type: rule.typ, Raw: trimmed}
		}
	}

	p.log.Debug("no match, returning unknown command")
	return Command{Type: CommandUnknown, Raw: trimmed}
}

// Help returns the command reference for the interactive prompt.
func Help() string {
	return strings.Join([]string{
		"commands:",
		"  volume <0..2>    set playback volume",
		"  mute             toggle spoken advice",
		"  speed <0.1..10>  set replay speed multiplier",
		"  pause / resume   control replay",
		"  status           show coaching status",
		"  sessions         list recorded sessions",
		"  quit             end the session",
	}, "\n")
}
