// Package menu implements the interactive console the tool presents
// to its operator. It owns no persistence logic; every action is a
// thin prompt-and-dispatch layer over the user repository.
package menu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"userctl/internal/model"
	"userctl/internal/repository"
)

// Repository is the slice of the user store the menu drives.
type Repository interface {
	Create(ctx context.Context, name, email string, age *int) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindAll(ctx context.Context) ([]*model.User, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id int64) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// Menu reads operator commands from in and writes responses to out.
type Menu struct {
	repo Repository
	in   *bufio.Scanner
	out  io.Writer
}

// New returns a menu over the given repository, reading from in and
// writing to out.
func New(repo Repository, in io.Reader, out io.Writer) *Menu {
	return &Menu{
		repo: repo,
		in:   bufio.NewScanner(in),
		out:  out,
	}
}

// Run shows the welcome banner and processes commands until the
// operator exits or input ends.
func (m *Menu) Run(ctx context.Context) {
	m.printWelcome()

	for {
		m.printMenu()

		line, ok := m.readLine()
		if !ok {
			fmt.Fprintln(m.out, "End of input detected. Shutting down...")
			return
		}

		choice, err := strconv.Atoi(line)
		if err != nil {
			choice = -1
		}

		switch choice {
		case 1:
			m.createUser(ctx)
		case 2:
			m.findUserByID(ctx)
		case 3:
			m.listUsers(ctx)
		case 4:
			m.updateUser(ctx)
		case 5:
			m.deleteUser(ctx)
		case 6:
			m.findUserByEmail(ctx)
		case 7:
			m.showStatistics(ctx)
		case 0:
			fmt.Fprintln(m.out, "Shutting down...")
			return
		default:
			fmt.Fprintln(m.out, "Invalid choice. Please try again.")
		}

		fmt.Fprintln(m.out, "\nPress Enter to continue...")
		if _, ok := m.readLine(); !ok {
			return
		}
	}
}

func (m *Menu) printWelcome() {
	fmt.Fprintln(m.out, "=====================================")
	fmt.Fprintln(m.out, "       USER MANAGEMENT CONSOLE")
	fmt.Fprintln(m.out, "=====================================")
}

func (m *Menu) printMenu() {
	fmt.Fprintln(m.out, "\n=====================================")
	fmt.Fprintln(m.out, "              MAIN MENU")
	fmt.Fprintln(m.out, "=====================================")
	fmt.Fprintln(m.out, "1. Create a new user")
	fmt.Fprintln(m.out, "2. Find a user by id")
	fmt.Fprintln(m.out, "3. List all users")
	fmt.Fprintln(m.out, "4. Update a user")
	fmt.Fprintln(m.out, "5. Delete a user")
	fmt.Fprintln(m.out, "6. Find a user by email")
	fmt.Fprintln(m.out, "7. User statistics")
	fmt.Fprintln(m.out, "0. Exit")
	fmt.Fprintln(m.out, "=====================================")
	fmt.Fprint(m.out, "Choose an action (0-7): ")
}

// readLine returns the next trimmed input line. ok is false once input
// is exhausted.
func (m *Menu) readLine() (string, bool) {
	if !m.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(m.in.Text()), true
}

// prompt prints label and reads the operator's answer.
func (m *Menu) prompt(label string) (string, bool) {
	fmt.Fprint(m.out, label)
	return m.readLine()
}

func (m *Menu) createUser(ctx context.Context) {
	fmt.Fprintln(m.out, "\n--- CREATE NEW USER ---")

	name, ok := m.prompt("Enter name: ")
	if !ok {
		fmt.Fprintln(m.out, "Input ended.")
		return
	}
	if name == "" {
		fmt.Fprintln(m.out, "Name cannot be empty!")
		return
	}

	email, ok := m.prompt("Enter email: ")
	if !ok {
		fmt.Fprintln(m.out, "Input ended.")
		return
	}
	if email == "" {
		fmt.Fprintln(m.out, "Email cannot be empty!")
		return
	}

	taken, err := m.repo.ExistsByEmail(ctx, email)
	if err != nil {
		m.fail("check email", err)
		return
	}
	if taken {
		fmt.Fprintln(m.out, "A user with this email already exists!")
		return
	}

	ageInput, ok := m.prompt("Enter age (or press Enter to skip): ")
	if !ok {
		fmt.Fprintln(m.out, "Input ended.")
		return
	}

	var age *int
	if ageInput != "" {
		n, err := strconv.Atoi(ageInput)
		switch {
		case err != nil:
			fmt.Fprintln(m.out, "Invalid age format, leaving it unset.")
		case !model.ValidAge(n):
			fmt.Fprintln(m.out, "Age out of range, leaving it unset.")
		default:
			age = &n
		}
	}

	user, err := m.repo.Create(ctx, name, email, age)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			fmt.Fprintln(m.out, "A user with this email already exists!")
			return
		}
		m.fail("create user", err)
		return
	}

	fmt.Fprintln(m.out, "✓ User created successfully!")
	m.printUser(user)
}

func (m *Menu) findUserByID(ctx context.Context) {
	fmt.Fprintln(m.out, "\n--- FIND USER BY ID ---")

	idInput, ok := m.prompt("Enter user id: ")
	if !ok {
		fmt.Fprintln(m.out, "Input ended.")
		return
	}
	id, err := strconv.ParseInt(idInput, 10, 64)
	if err != nil {
		fmt.Fprintln(m.out, "Invalid id format!")
		return
	}

	user, err := m.repo.FindByID(ctx, id)
	if err != nil {
		m.fail("find user", err)
		return
	}
	if user == nil {
		fmt.Fprintf(m.out, "✗ User with id %d not found.\n", id)
		return
	}

	fmt.Fprintln(m.out, "✓ User found:")
	m.printUser(user)
}

func (m *Menu) listUsers(ctx context.Context) {
	fmt.Fprintln(m.out, "\n--- ALL USERS ---")

	users, err := m.repo.FindAll(ctx)
	if err != nil {
		m.fail("list users", err)
		return
	}
	if len(users) == 0 {
		fmt.Fprintln(m.out, "There are no users yet.")
		return
	}

	fmt.Fprintf(m.out, "Users found: %d\n", len(users))
	fmt.Fprintln(m.out, "=====================================")
	for _, user := range users {
		m.printUser(user)
		fmt.Fprintln(m.out, "-------------------------------------")
	}
}

func (m *Menu) updateUser(ctx context.Context) {
	fmt.Fprintln(m.out, "\n--- UPDATE USER ---")

	idInput, ok := m.prompt("Enter the id of the user to update: ")
	if !ok {
		fmt.Fprintln(m.out, "Input ended.")
		return
	}
	id, err := strconv.ParseInt(idInput, 10, 64)
	if err != nil {
		fmt.Fprintln(m.out, "Invalid id format!")
		return
	}

	user, err := m.repo.FindByID(ctx, id)
	if err != nil {
		m.fail("find user", err)
		return
	}
	if user == nil {
		fmt.Fprintf(m.out, "✗ User with id %d not found.\n", id)
		return
	}

	fmt.Fprintln(m.out, "Current user details:")
	m.printUser(user)

	fmt.Fprintln(m.out, "\nEnter new values (press Enter to keep the current value):")

	newName, ok := m.prompt(fmt.Sprintf("New name [%s]: ", user.Name))
	if !ok {
		fmt.Fprintln(m.out, "Input ended.")
		return
	}
	if newName != "" {
		user.Name = newName
	}

	newEmail, ok := m.prompt(fmt.Sprintf("New email [%s]: ", user.Email))
	if !ok {
		fmt.Fprintln(m.out, "Input ended.")
		return
	}
	if newEmail != "" {
		if newEmail != user.Email {
			taken, err := m.repo.ExistsByEmail(ctx, newEmail)
			if err != nil {
				m.fail("check email", err)
				return
			}
			if taken {
				fmt.Fprintln(m.out, "Email is already used by another user!")
				return
			}
		}
		user.Email = newEmail
	}

	newAgeInput, ok := m.prompt(fmt.Sprintf("New age [%s]: ", formatAge(user.Age)))
	if !ok {
		fmt.Fprintln(m.out, "Input ended.")
		return
	}
	if newAgeInput != "" {
		n, err := strconv.Atoi(newAgeInput)
		switch {
		case err != nil:
			fmt.Fprintln(m.out, "Invalid age format, value not changed.")
		case !model.ValidAge(n):
			fmt.Fprintln(m.out, "Age out of range, value not changed.")
		default:
			user.Age = &n
		}
	}

	if err := m.repo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailTaken):
			fmt.Fprintln(m.out, "Email is already used by another user!")
		case errors.Is(err, repository.ErrNotFound):
			fmt.Fprintf(m.out, "✗ User with id %d not found.\n", id)
		default:
			m.fail("update user", err)
		}
		return
	}

	fmt.Fprintln(m.out, "✓ User updated successfully!")
	m.printUser(user)
}

func (m *Menu) deleteUser(ctx context.Context) {
	fmt.Fprintln(m.out, "\n--- DELETE USER ---")

	idInput, ok := m.prompt("Enter the id of the user to delete: ")
	if !ok {
		fmt.Fprintln(m.out, "Input ended.")
		return
	}
	id, err := strconv.ParseInt(idInput, 10, 64)
	if err != nil {
		fmt.Fprintln(m.out, "Invalid id format!")
		return
	}

	user, err := m.repo.FindByID(ctx, id)
	if err != nil {
		m.fail("find user", err)
		return
	}
	if user == nil {
		fmt.Fprintf(m.out, "✗ User with id %d not found.\n", id)
		return
	}

	fmt.Fprintln(m.out, "User to delete:")
	m.printUser(user)

	confirm, ok := m.prompt("Are you sure you want to delete this user? (y/N): ")
	if !ok {
		fmt.Fprintln(m.out, "Input ended.")
		return
	}

	switch strings.ToLower(confirm) {
	case "y", "yes":
		deleted, err := m.repo.Delete(ctx, id)
		if err != nil {
			m.fail("delete user", err)
			return
		}
		if deleted {
			fmt.Fprintln(m.out, "✓ User deleted successfully!")
		} else {
			fmt.Fprintln(m.out, "✗ Failed to delete user.")
		}
	default:
		fmt.Fprintln(m.out, "Deletion cancelled.")
	}
}

func (m *Menu) findUserByEmail(ctx context.Context) {
	fmt.Fprintln(m.out, "\n--- FIND USER BY EMAIL ---")

	email, ok := m.prompt("Enter user email: ")
	if !ok {
		fmt.Fprintln(m.out, "Input ended.")
		return
	}
	if email == "" {
		fmt.Fprintln(m.out, "Email cannot be empty!")
		return
	}

	user, err := m.repo.FindByEmail(ctx, email)
	if err != nil {
		m.fail("find user", err)
		return
	}
	if user == nil {
		fmt.Fprintf(m.out, "✗ User with email '%s' not found.\n", email)
		return
	}

	fmt.Fprintln(m.out, "✓ User found:")
	m.printUser(user)
}

func (m *Menu) showStatistics(ctx context.Context) {
	fmt.Fprintln(m.out, "\n--- USER STATISTICS ---")

	total, err := m.repo.Count(ctx)
	if err != nil {
		m.fail("load statistics", err)
		return
	}
	fmt.Fprintf(m.out, "Total users: %d\n", total)
	if total == 0 {
		return
	}

	users, err := m.repo.FindAll(ctx)
	if err != nil {
		m.fail("load statistics", err)
		return
	}

	withAge := 0
	ageSum := 0
	for _, user := range users {
		if user.HasAge() {
			withAge++
			ageSum += *user.Age
		}
	}

	fmt.Fprintf(m.out, "Users with an age set: %d\n", withAge)
	fmt.Fprintf(m.out, "Users without an age: %d\n", total-int64(withAge))
	if withAge > 0 {
		fmt.Fprintf(m.out, "Average age: %.1f\n", float64(ageSum)/float64(withAge))
	}
}

func (m *Menu) printUser(u *model.User) {
	fmt.Fprintf(m.out, "ID: %d\n", u.ID)
	fmt.Fprintf(m.out, "Name: %s\n", u.Name)
	fmt.Fprintf(m.out, "Email: %s\n", u.Email)
	fmt.Fprintf(m.out, "Age: %s\n", formatAge(u.Age))
	fmt.Fprintf(m.out, "Created: %s\n", u.CreatedAt.Format("2006-01-02 15:04:05"))
}

// fail logs the failure and tells the operator without leaving the
// menu loop.
func (m *Menu) fail(action string, err error) {
	log.Error().Err(err).Str("action", action).Msg("Menu action failed")
	fmt.Fprintf(m.out, "Error: failed to %s: %v\n", action, err)
}

func formatAge(age *int) string {
	if age == nil {
		return "not set"
	}
	return strconv.Itoa(*age)
}
