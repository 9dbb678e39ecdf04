package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stplatform/st-platform/internal/cst"
	"github.com/stplatform/st-platform/internal/parser"
)

var parseEval string

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a Structured Text file and print its concrete syntax tree",
	Args:  cobra.MaximumNArgs(1),
	RunE:  parseFile,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringVarP(&parseEval, "eval", "e", "", "parse inline source instead of reading a file")
}

func parseFile(_ *cobra.Command, args []string) error {
	input, filename, err := readSource(parseEval, args)
	if err != nil {
		return err
	}

	tree, diags := parser.ParseFile(filename, input)
	for _, d := range diags {
		fmt.Printf("%s:%d:%d: %s\n", filename, d.Range.Start.Line, d.Range.Start.Column, d.Message)
	}
	printNode(tree, tree.Root, 0)
	if len(diags) > 0 {
		return fmt.Errorf("parsed with %d diagnostic(s)", len(diags))
	}
	return nil
}

func printNode(tree *cst.Tree, n *cst.Node, depth int) {
	for i := 0; i < depth; i++ {
		fmt.Print("  ")
	}
	fmt.Printf("%v\n", n.Kind)
	for _, c := range n.Children {
		printNode(tree, c, depth+1)
	}
}
