// cmd/alphabet.go
package cmd

import (
	"fmt"

	"github.com/ColonelBlimp/morsevision/internal/morse"
	"github.com/spf13/cobra"
)

func newAlphabetCmd() *cobra.Command {
	var encode string

	cmd := &cobra.Command{
		Use:   "alphabet",
		Short: "Print the letters the decoder knows and their codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			trie := morse.StandardAlphabet

			if encode != "" {
				for _, r := range encode {
					if r == ' ' {
						fmt.Fprint(w, "/ ")
						continue
					}
					code, ok := trie.Encode(r)
					if !ok {
						return fmt.Errorf("no code for %q", r)
					}
					fmt.Fprint(w, code, " ")
				}
				fmt.Fprintln(w)
				return nil
			}

			for _, r := range trie.Letters() {
				code, _ := trie.Encode(r)
				fmt.Fprintf(w, "%c  %s\n", r, code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&encode, "encode", "", "print the code for a word instead of the table")
	return cmd
}
