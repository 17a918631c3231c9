package theme

import (
	"fmt"
)

// Banner returns the startup banner.
func Banner() string {
	const cyan = "\033[36m"
	const magenta = "\033[35m"
	const reset = "\033[0m"

	return "" +
		magenta + "  ▄▄▄ UNFOLLOW NINJA ▄▄▄\n" + reset +
		cyan + "   ( •_•)>⌐■-■   👋\n" + reset +
		"  know who left, and why\n"
}

// PrintBanner prints the banner to stdout.
func PrintBanner() {
	fmt.Print(Banner())
}
