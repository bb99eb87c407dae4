package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage registered users",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered users",
	RunE:  runUsersList,
}

var usersRemoveCmd = &cobra.Command{
	Use:   "remove USER_ID",
	Short: "Remove a user and their face encodings",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersRemove,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersRemoveCmd)
}

func runUsersList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	users, err := st.Users()
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Println("No users registered.")
		return nil
	}

	fmt.Printf("%-5s %-24s %-12s %-16s %s\n", "ID", "NAME", "EMPLOYEE", "DEPARTMENT", "ENCODINGS")
	for _, u := range users {
		count, err := st.EncodingCount(u.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%-5d %-24s %-12s %-16s %d\n", u.ID, u.Name, u.EmployeeID, u.Department, count)
	}
	fmt.Printf("\nTotal: %d user(s)\n", len(users))
	return nil
}

func runUsersRemove(cmd *cobra.Command, args []string) error {
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user ID %q", args[0])
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	user, err := st.UserByID(userID)
	if err != nil {
		return err
	}
	if err := st.DeleteUser(userID); err != nil {
		return err
	}

	fmt.Printf("Removed %s (employee %s) and their face data.\n", user.Name, user.EmployeeID)
	return nil
}
