package models

import "strings"

// CommandType enumerates supported chat command categories.
type CommandType string

const (
	CommandRestock CommandType = "restock"
	CommandSell    CommandType = "sell"
	CommandStock   CommandType = "stock"
	CommandHelp    CommandType = "help"
	CommandUnknown CommandType = "unknown"
	// CommandIntake marks plain text that should go through inventory extraction.
	CommandIntake CommandType = "intake"
)

// Command represents a parsed instruction extracted from a chat message.
type Command struct {
	Type CommandType
	Raw  string
	Args []string
}

// ParseCommand derives a Command from a free-form chat message. Messages that do
// not start with a slash are treated as inventory descriptions.
func ParseCommand(message string) Command {
	trimmed := strings.TrimSpace(message)
	cmd := Command{Raw: message}

	if trimmed == "" {
		cmd.Type = CommandUnknown
		return cmd
	}

	if !strings.HasPrefix(trimmed, "/") {
		cmd.Type = CommandIntake
		return cmd
	}

	tokens := strings.Fields(trimmed)
	head := strings.ToLower(strings.TrimPrefix(tokens[0], "/"))
	switch head {
	case string(CommandRestock):
		cmd.Type = CommandRestock
	case string(CommandSell), "sale", "sold":
		cmd.Type = CommandSell
	case string(CommandStock):
		cmd.Type = CommandStock
	case string(CommandHelp):
		cmd.Type = CommandHelp
	default:
		cmd.Type = CommandUnknown
	}

	if len(tokens) > 1 {
		cmd.Args = tokens[1:]
	}

	return cmd
}
