// connections.go manages saved connection profiles from the CLI:
// list, add (from the shared connection flags) and remove. Profiles
// are consumed by --conn on the root and ask commands.
package cmd

import (
	"fmt"
	"strconv"

	"github.com/askql/askql/applog"
	"github.com/askql/askql/config"
	"github.com/spf13/cobra"
)

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "Manage saved connection profiles",
}

var connectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved connection profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := config.NewConnectionStore()
		if err != nil {
			return err
		}
		if len(store.Connections) == 0 {
			fmt.Println("no saved connections")
			return nil
		}
		for _, c := range store.Connections {
			target := fmt.Sprintf("%s@%s:%s/%s", c.User, c.Host, c.Port, c.Database)
			if c.SSH.Enabled {
				target += " (via " + c.SSH.Host + ")"
			}
			fmt.Printf("%-20s %s\n", c.Name, target)
		}
		return nil
	},
}

var connectionsAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Save the connection given by --host/--user/... under a name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := config.NewConnectionStore()
		if err != nil {
			return err
		}
		conn := connectionFromFlags(args[0])
		store.Add(conn)
		if err := store.Save(); err != nil {
			return err
		}
		applog.Event("CONFIG", "saved connection %q", conn.Name)
		fmt.Printf("saved %q\n", conn.Name)
		return nil
	},
}

var connectionsRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Delete a saved connection profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := config.NewConnectionStore()
		if err != nil {
			return err
		}
		if _, ok := store.Get(args[0]); !ok {
			return fmt.Errorf("no saved connection named %q", args[0])
		}
		store.Delete(args[0])
		if err := store.Save(); err != nil {
			return err
		}
		applog.Event("CONFIG", "removed connection %q", args[0])
		fmt.Printf("removed %q\n", args[0])
		return nil
	},
}

func init() {
	connectionsCmd.AddCommand(connectionsListCmd, connectionsAddCmd, connectionsRemoveCmd)
	rootCmd.AddCommand(connectionsCmd)
}

// connectionFromFlags builds a profile from the shared connection
// flags, starting from the stock defaults so unset flags keep sane
// values.
func connectionFromFlags(name string) config.Connection {
	conn := config.DefaultConnection()
	conn.Name = name
	if flagHost != "" {
		conn.Host = flagHost
	}
	conn.Port = strconv.Itoa(flagPort)
	if flagUser != "" {
		conn.User = flagUser
	}
	conn.Password = flagPassword
	if flagDatabase != "" {
		conn.Database = flagDatabase
	}
	conn.SSLMode = flagSSLMode
	if flagSSHHost != "" {
		conn.SSH = config.SSHEntry{
			Enabled: true,
			Host:    flagSSHHost,
			Port:    strconv.Itoa(flagSSHPort),
			User:    flagSSHUser,
			KeyPath: flagSSHKey,
		}
	}
	return conn
}
