package colornamer_test

import (
	"fmt"

	"github.com/menta2k/moodlens/pkg/colornamer"
	"github.com/menta2k/moodlens/pkg/colorspace"
)

func ExampleDescribe() {
	for _, c := range []colorspace.RGB{{255, 0, 0}, {0, 0, 100}, {300, -5, 0}} {
		color := colornamer.Describe(c)
		fmt.Printf("%s (%d,%d,%d)\n", color.Name, color.Red, color.Green, color.Blue)
	}
	// Output:
	// Red (255,0,0)
	// Dark Navy (0,0,100)
	// Red (255,0,0)
}
