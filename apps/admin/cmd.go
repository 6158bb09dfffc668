package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/playlms/backend/core/course"
	"github.com/playlms/backend/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sql.DB
	usrRepo  user.Repository
	usrSvc   *user.Service
	crsSvc   *course.Service
	validate *validator.Validate
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Println("  addstaff -name NAME -username USERNAME -email EMAIL - create a staff account; the password will be prompted")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset a user's password")
	fmt.Println("  ingest -url PLAYLIST_URL -title TITLE -category CATEGORY [-creator USERNAME] - convert a playlist into a course")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addStaffCmd := flag.NewFlagSet("addstaff", flag.ExitOnError)
	addStaffName := addStaffCmd.String("name", "", "The account's display name.")
	addStaffUname := addStaffCmd.String("username", "", "The account's username.")
	addStaffEmail := addStaffCmd.String("email", "", "The account's email.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	ingestCmd := flag.NewFlagSet("ingest", flag.ExitOnError)
	ingestURL := ingestCmd.String("url", "", "The source playlist URL or id.")
	ingestTitle := ingestCmd.String("title", "", "The course title.")
	ingestCategory := ingestCmd.String("category", "", "The course category.")
	ingestDescription := ingestCmd.String("description", "", "An optional course description.")
	ingestCreator := ingestCmd.String("creator", "", "Username of the staff account to record as the course creator.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addstaff":
		if err := addStaffCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addStaffName == "" || *addStaffUname == "" || *addStaffEmail == "" {
			addStaffCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addStaffCmd.Usage()
			return errHelp
		}
		return cli.addStaff(*addStaffName, *addStaffUname, *addStaffEmail, pwd)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)
	case "ingest":
		if err := ingestCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *ingestURL == "" || *ingestTitle == "" || *ingestCategory == "" {
			ingestCmd.Usage()
			return errHelp
		}
		return cli.ingest(*ingestURL, *ingestTitle, *ingestCategory, *ingestDescription, *ingestCreator)
	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
