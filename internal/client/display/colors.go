package display

// Terminal color codes
const (
	Reset   = "\033[0m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
)

// Paint wraps s in color and a reset
func Paint(color, s string) string {
	return color + s + Reset
}

// Prompt returns a colored prompt string ending in " > "
func Prompt(text string) string {
	return Yellow + text + " > " + Reset
}
