package vault

import (
	"fmt"
	"io"
)

// Render writes the cards to w. Collapsed cards show only their name.
func (vm *ViewModel) Render(w io.Writer) error {
	cards := vm.Cards()
	if len(cards) == 0 {
		_, err := fmt.Fprintln(w, "Vault is empty.")
		return err
	}

	for _, c := range cards {
		arrow := "▼"
		if c.Expanded {
			arrow = "▲"
		}
		if _, err := fmt.Fprintf(w, "%s %s  [%s]\n", arrow, c.Name, c.ID); err != nil {
			return err
		}
		if !c.Expanded {
			continue
		}
		fmt.Fprintf(w, "    Username: %s\n", c.Username)
		fmt.Fprintf(w, "    Password: %s\n", c.ShownPassword())
		if c.URL != "" {
			fmt.Fprintf(w, "    URL: %s\n", c.URL)
		}
		if c.Notes != "" {
			fmt.Fprintf(w, "    Notes: %s\n", c.Notes)
		}
	}
	return nil
}
