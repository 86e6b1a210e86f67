package session

// KeyEnter is the submit key in the compose box.
const KeyEnter = "Enter"

// ComposeKey applies one keystroke to the compose buffer. Enter with
// no modifier submits; Enter with Shift inserts a newline and never
// submits; any other key is appended.
func ComposeKey(buf, key string, shift bool) (string, bool) {
	if key == KeyEnter {
		if shift {
			return buf + "\n", false
		}
		return buf, true
	}
	return buf + key, false
}
