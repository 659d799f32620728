package view_test

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/flowscope/flowscope/pkg/layout"
	"github.com/flowscope/flowscope/pkg/view"
)

func ExampleSession() {
	logger := log.NewWithOptions(io.Discard, log.Options{})
	sess, err := view.NewSession(nil, nil, logger, layout.DefaultParams())
	if err != nil {
		fmt.Println("session:", err)
		return
	}

	ctx := context.Background()
	st, err := sess.LoadSnapshot(ctx, pipelineSnapshot())
	if err != nil {
		fmt.Println("load:", err)
		return
	}
	fmt.Println("expanded: ", strings.Join(visibleIDs(st), " "))

	st, err = sess.ToggleCollapsed(ctx, "proc")
	if err != nil {
		fmt.Println("toggle:", err)
		return
	}
	fmt.Println("collapsed:", strings.Join(visibleIDs(st), " "))

	// Output:
	// expanded:  raw split train_x model lr
	// collapsed: raw model lr proc
}
