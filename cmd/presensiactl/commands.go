package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/presensia/presensia-core/internal/app"
	"github.com/presensia/presensia-core/internal/courses/domain"
)

func seedCourses(ctx context.Context, a *app.App, w io.Writer) error {
	if _, err := a.Courses.FetchAll(ctx); err != nil {
		return err
	}
	created := 0
	for _, c := range domain.DefaultCourses() {
		_, err := a.Courses.Create(ctx, c)
		switch {
		case errors.Is(err, domain.ErrDuplicateCode):
			fmt.Fprintf(w, "skip   %s (exists)\n", c.Code)
		case err != nil:
			return fmt.Errorf("seed %s: %w", c.Code, err)
		default:
			created++
			fmt.Fprintf(w, "create %s %s\n", c.Code, c.Name)
		}
	}
	fmt.Fprintf(w, "%d courses created\n", created)
	return nil
}

func listUsers(ctx context.Context, a *app.App, w io.Writer) error {
	users, err := a.Users.FetchAll(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tROLE\tNAME\tCOURSE")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, u.Name, u.Course)
	}
	return tw.Flush()
}

func listCourses(ctx context.Context, a *app.App, w io.Writer) error {
	courses, err := a.Courses.FetchAll(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tINSTRUCTOR\tSEMESTER\tSTUDENTS")
	for _, c := range courses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", c.Code, c.Name, c.Instructor, c.Semester, c.Students)
	}
	return tw.Flush()
}
