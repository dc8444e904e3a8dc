package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/merklekit/merklekit/pkg/config"
	"github.com/merklekit/merklekit/pkg/hasher"
	"github.com/merklekit/merklekit/pkg/merkle"
	"github.com/merklekit/merklekit/pkg/persistence"
)

func main() {
	algorithmFlag := &cli.StringFlag{
		Name:    "algorithm",
		Aliases: []string{"a"},
		Value:   "sha256",
		Usage:   fmt.Sprintf("Hash algorithm: %s", config.GetSupportedAlgorithmsString()),
		EnvVars: []string{config.EnvMerkleAlgorithm},
	}

	app := &cli.App{
		Name:    "merklectl",
		Usage:   "Build merkle trees and inclusion proofs from files",
		Version: "1.0.0",
		Commands: []*cli.Command{
			{
				Name:      "root",
				Usage:     "Compute the merkle root of the given files (one leaf per file, in argument order)",
				ArgsUsage: "FILE [FILE...]",
				Flags:     []cli.Flag{algorithmFlag},
				Action:    runRoot,
			},
			{
				Name:      "prove",
				Usage:     "Generate an inclusion proof for one of the given files",
				ArgsUsage: "FILE [FILE...]",
				Flags: []cli.Flag{
					algorithmFlag,
					&cli.IntFlag{
						Name:     "index",
						Aliases:  []string{"i"},
						Usage:    "Leaf index to prove (position of the file in the argument list)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Write the proof JSON to this file instead of stdout",
					},
				},
				Action: runProve,
			},
			{
				Name:      "verify",
				Usage:     "Verify a proof produced by 'prove' against a trusted root",
				ArgsUsage: "PROOF_FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "root",
						Aliases: []string{"r"},
						Usage:   "Trusted root (hex); defaults to the root embedded in the proof",
					},
				},
				Action: runVerify,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

// readBlocks loads each argument file as one leaf, in argument order
func readBlocks(c *cli.Context) ([][]byte, error) {
	if c.NArg() == 0 {
		return nil, fmt.Errorf("at least one input file is required")
	}

	blocks := make([][]byte, 0, c.NArg())
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		blocks = append(blocks, data)
	}
	return blocks, nil
}

func buildTree(c *cli.Context) (*merkle.MerkleTree, error) {
	blocks, err := readBlocks(c)
	if err != nil {
		return nil, err
	}

	th, err := hasher.NewTreeHasherForAlgorithm(c.String("algorithm"))
	if err != nil {
		return nil, err
	}

	return merkle.BuildMerkleTree(blocks, th)
}

func runRoot(c *cli.Context) error {
	tree, err := buildTree(c)
	if err != nil {
		return err
	}

	fmt.Println(hex.EncodeToString(tree.Root()))
	return nil
}

func runProve(c *cli.Context) error {
	tree, err := buildTree(c)
	if err != nil {
		return err
	}

	proof, err := tree.GenerateProof(c.Int("index"))
	if err != nil {
		return err
	}

	record, err := persistence.NewProofRecord("", c.String("algorithm"), proof, tree.Root())
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode proof: %w", err)
	}

	if path := c.String("out"); path != "" {
		return os.WriteFile(path, append(out, '\n'), 0o644)
	}
	fmt.Println(string(out))
	return nil
}

func runVerify(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one proof file is required")
	}

	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("failed to read proof: %w", err)
	}

	record, err := persistence.UnmarshalProofRecord(data)
	if err != nil {
		return err
	}

	th, err := hasher.NewTreeHasherForAlgorithm(record.Algorithm)
	if err != nil {
		return err
	}

	proof, err := record.ToProof()
	if err != nil {
		return err
	}

	var trustedRoot []byte
	if rootHex := c.String("root"); rootHex != "" {
		trustedRoot, err = hex.DecodeString(rootHex)
		if err != nil {
			return fmt.Errorf("trusted root must be hex: %w", err)
		}
	} else {
		trustedRoot, err = record.RootBytes()
		if err != nil {
			return err
		}
	}

	valid, err := merkle.VerifyProof(proof, th, trustedRoot)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	if !valid {
		return fmt.Errorf("proof is INVALID: recomputed root does not match trusted root")
	}

	fmt.Printf("proof is valid: leaf %d is included under root %s\n", proof.LeafIndex, hex.EncodeToString(trustedRoot))
	return nil
}
