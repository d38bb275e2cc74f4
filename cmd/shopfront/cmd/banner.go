package cmd

import (
	"fmt"
)

const banner = `
   _____ _                  __                 _
  / ____| |                / _|               | |
 | (___ | |__   ___  _ __ | |_ _ __ ___  _ __ | |_
  \___ \| '_ \ / _ \| '_ \|  _| '__/ _ \| '_ \| __|
  ____) | | | | (_) | |_) | | | | | (_) | | | | |_
 |_____/|_| |_|\___/| .__/|_| |_|  \___/|_| |_|\__|
                    | |
                    |_|
`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Online Storefront Service - Version %s\x1b[0m\n\n", Version)
}
