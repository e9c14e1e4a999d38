package cmd

import "fmt"

type VersionCmd struct{}

func (v *VersionCmd) Run(ctx *Context) error {
	if ctx.JSONOutput {
		return writeJSON(ctx.Out, map[string]string{"version": ctx.Version})
	}
	_, err := fmt.Fprintln(ctx.Out, "jobops", ctx.Version)
	return err
}
