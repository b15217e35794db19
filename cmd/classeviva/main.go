package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-classeviva/classeviva"
	"github.com/jrsteele09/go-classeviva/internal/config"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %s\n", err)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname("classeviva")

	options := []classeviva.Option{
		classeviva.WithRegion(classeviva.Region(c.GetRegion())),
		classeviva.WithCredentials(c.GetUsername(), c.GetPassword()),
		classeviva.WithLogger(zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()),
	}
	if c.GetApp() != "" {
		options = append(options, classeviva.WithApp(c.GetApp()))
	}
	if c.GetCacheDir() != "" {
		options = append(options, classeviva.WithCacheDir(c.GetCacheDir()))
	}

	client := classeviva.New(options...)
	defer client.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	user, err := client.Login(ctx, "", "")
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	fmt.Printf("Logged in as %s %s (%s)\n", user.Name, user.Surname, user.Ident)

	if card, err := client.Card(ctx); err == nil {
		fmt.Printf("School: %s (%s)\n", card.SchoolName, card.SchoolCode)
	}
	if grades, err := client.Grades(ctx); err == nil {
		fmt.Printf("Grades on record: %d\n", len(grades))
	}
	if items, err := client.Noticeboard(ctx); err == nil {
		fmt.Printf("Noticeboard items: %d\n", len(items))
	}

	client.Logout()
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
