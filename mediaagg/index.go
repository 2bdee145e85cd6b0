package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DeafMist/media-aggregator/internal/indexing"
	"github.com/DeafMist/media-aggregator/internal/loader"
	"github.com/DeafMist/media-aggregator/internal/models"
)

func (a *app) indexCommand() *cobra.Command {
	var kindFlag string
	cmd := &cobra.Command{
		Use:   "index <source>",
		Short: "Index every record saved on disk for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			kind, err := resolveKind(kindFlag, source)
			if err != nil {
				return err
			}

			indexer, err := a.newIndexer()
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Loading %s records from %s...\n", kind, a.store.Dir(source))
			res, err := loader.New(a.store, indexer, a.log).Run(cmd.Context(), source, kind)
			if err != nil {
				if errors.Is(err, loader.ErrNothingToIndex) {
					fmt.Fprintf(a.out, "No records found for source '%s'\n", source)
				}
				return err
			}
			a.reportIndexed(res.Success, res.Failed, res.Index)
			return nil
		},
	}
	cmd.Flags().StringVar(&kindFlag, "kind", "auto", "record kind: auto, article or post")
	return cmd
}

// resolveKind maps --kind to a record kind. auto treats the posts directory
// as posts and everything else as articles.
func resolveKind(flag, source string) (models.Kind, error) {
	if flag == "" || flag == "auto" {
		if source == indexing.PostIndex {
			return models.KindSocialPost, nil
		}
		return models.KindArticle, nil
	}
	return models.ParseKind(flag)
}
