package codes

// ErrorCodes maps generator exit codes to their descriptions. Generators are
// free to use any non-zero code; these are the conventional ones (sysexits and
// shell conventions).
var ErrorCodes = map[int]string{
	0:   "Success",
	1:   "General failure",
	2:   "Invalid usage",
	64:  "Command line usage error",
	65:  "Data format error (schema could not be parsed)",
	66:  "Cannot open input",
	69:  "Service unavailable (API endpoint unreachable)",
	70:  "Internal software error",
	73:  "Cannot create output file",
	74:  "Input/output error",
	75:  "Temporary failure",
	77:  "Permission denied",
	78:  "Configuration error",
	124: "Timed out",
	126: "Command found but not executable",
	127: "Command not found",
	130: "Interrupted",
	137: "Killed",
}

// IsSuccess returns true if the exit code indicates successful generation
func IsSuccess(code int) bool {
	return code == 0
}

// GetErrorMessage returns the error message for a given exit code, or a generic message if unknown
func GetErrorMessage(code int) string {
	if msg, ok := ErrorCodes[code]; ok {
		return msg
	}

	return "Unknown error"
}
