package main

import (
	"context"
	"fmt"

	"github.com/playlms/backend/core"
	"github.com/playlms/backend/core/course"
)

// ingest converts a playlist into a course from the command line.
func (cli *commandLine) ingest(playlistURL, title, category, description, creator string) error {
	ctx := context.Background()

	var createdBy string
	if creator != "" {
		usr, err := cli.usrRepo.GetUserByUsername(ctx, core.CleanString(creator, true /* lower */))
		if err != nil {
			return err
		}
		createdBy = usr.ID
	}

	nc := course.NewCourse{
		Title:       title,
		Description: description,
		PlaylistURL: playlistURL,
		Category:    category,
	}
	if err := nc.Validate(cli.validate); err != nil {
		return err
	}

	crs, err := cli.crsSvc.Create(ctx, nc, createdBy)
	if err != nil {
		return err
	}
	fmt.Printf("course %q created: %d modules, ~%d min\n", crs.Slug, crs.TotalModules, crs.TotalDurationMinutes)
	return nil
}
