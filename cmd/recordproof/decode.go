package main

import (
	"fmt"

	"recordproof/internal/infra/codec"
	"recordproof/internal/infra/schema"

	"github.com/spf13/cobra"
)

func newDecodeCmd() *cobra.Command {
	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode protobuf exports into JSON",
	}

	var recordIn string
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Decode a single Record message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readInput(cmd, recordIn)
			if err != nil {
				return err
			}
			reg, err := schema.Load()
			if err != nil {
				return err
			}
			record, err := codec.NewRecordCodec(reg).Decode(raw)
			if err != nil {
				return err
			}
			if err := checkRecords(record); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), record)
		},
	}
	recordCmd.Flags().StringVar(&recordIn, "in", "-", "input file, - for stdin")

	var collectionIn string
	collectionCmd := &cobra.Command{
		Use:   "collection",
		Short: "Decode a RecordCollection export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readInput(cmd, collectionIn)
			if err != nil {
				return err
			}
			reg, err := schema.Load()
			if err != nil {
				return err
			}
			collection, err := codec.NewCollectionCodec(reg, nil).Decode(raw)
			if err != nil {
				return err
			}
			if err := checkRecords(collection.Records...); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), collection)
		},
	}
	collectionCmd.Flags().StringVar(&collectionIn, "in", "-", "input file, - for stdin")

	decodeCmd.AddCommand(recordCmd, collectionCmd)
	return decodeCmd
}

// checkRecords rejects decoded records whose createdAt is not a timestamp.
func checkRecords(records ...codec.Record) error {
	for i, record := range records {
		if _, err := record.ToDomain(); err != nil {
			return fmt.Errorf("record %d (%s): %w", i, record.Identifier, err)
		}
	}
	return nil
}
