package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/DeafMist/media-aggregator/internal/indexing"
)

func (a *app) sourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List saved sources with their record counts and target index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := a.store.Sources()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				a.log.Info("no sources saved", "data_root", a.store.Root())
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(a.out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Source", "Records", "Index"})
			for _, name := range names {
				files, err := a.store.List(name)
				if err != nil {
					return err
				}
				index := indexing.IndexNameFor(a.cfg.IndexPrefix, name)
				if name == indexing.PostIndex {
					index = indexing.PostIndex
				}
				t.AppendRow(table.Row{name, strconv.Itoa(len(files)), index})
			}
			t.Render()
			return nil
		},
	}
}
