package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stplatform/st-platform/internal/lexer"
)

var (
	lexEval     string
	lexShowPos  bool
	lexOnlyTriv bool
)

var lexCmd = &cobra.Command{
	Use:   "lex [file]",
	Short: "Tokenize a Structured Text file or expression",
	Long: `Tokenize an ST program and print the resulting token stream.
Trivia tokens (comments/whitespace) are left out unless --include-trivia
is given.

Examples:
  stc lex program.st
  stc lex -e "x := 1 + 2;"
  stc lex --show-pos program.st`,
	Args: cobra.MaximumNArgs(1),
	RunE: lexFile,
}

func init() {
	rootCmd.AddCommand(lexCmd)

	lexCmd.Flags().StringVarP(&lexEval, "eval", "e", "", "tokenize inline source instead of reading a file")
	lexCmd.Flags().BoolVar(&lexShowPos, "show-pos", false, "show each token's line:column")
	lexCmd.Flags().BoolVar(&lexOnlyTriv, "include-trivia", false, "include trivia (whitespace/comment) tokens")
}

func lexFile(_ *cobra.Command, args []string) error {
	input, _, err := readSource(lexEval, args)
	if err != nil {
		return err
	}

	toks := lexer.New(input).LexAll()
	for _, t := range toks {
		if t.Kind.IsTrivia() && !lexOnlyTriv {
			continue
		}
		if lexShowPos {
			fmt.Printf("%4d:%-3d %-20v %q\n", t.Range.Start.Line, t.Range.Start.Column, t.Kind, t.Text)
		} else {
			fmt.Printf("%-20v %q\n", t.Kind, t.Text)
		}
	}
	return nil
}

// readSource resolves the input text and filename from either an inline
// --eval string or a file argument, the pattern the lex, parse and
// analyze subcommands share for their single positional source argument.
func readSource(eval string, args []string) (input, filename string, err error) {
	if eval != "" {
		return eval, "<eval>", nil
	}
	if len(args) != 1 {
		return "", "", fmt.Errorf("expected a file argument or -e")
	}
	content, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", fmt.Errorf("failed to read file %s: %w", args[0], err)
	}
	return string(content), args[0], nil
}
