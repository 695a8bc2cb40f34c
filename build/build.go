// Package build runs the whole ROM pipeline for a project: module
// postprocessing, asset transcoding, manifest and package assembly,
// signing, installation and optional archive output.
package build

import (
	"context"
	"encoding/hex"
	"io"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/firefly-zero/firefly-cli/assets"
	"github.com/firefly-zero/firefly-cli/keys"
	"github.com/firefly-zero/firefly-cli/meta"
	"github.com/firefly-zero/firefly-cli/pack"
	"github.com/firefly-zero/firefly-cli/rom"
	"github.com/firefly-zero/firefly-cli/vfs"
	"github.com/firefly-zero/firefly-cli/wasm"
)

// Options controls a build.
type Options struct {
	// VFS receives the installed ROM. It may be nil with NoInstall.
	VFS *vfs.VFS
	// Keys is the key store to sign with. Nil uses the store of VFS.
	Keys *keys.Store
	// KeyAlg is used when a key has to be created.
	KeyAlg keys.Alg
	// CreateKey creates the author key when it does not exist yet.
	CreateKey bool
	HashAlg   pack.HashAlg
	// Validate compiles the processed module.
	Validate bool
	// NoInstall skips installation into the VFS.
	NoInstall bool
	// ArchiveDir, when set, receives <author>.<app>.zip.
	ArchiveDir string
	// Limits overrides the default asset limits when non-zero.
	Limits *assets.Limits
	Logger *log.Logger
}

// Result describes a finished build.
type Result struct {
	Package   *pack.Package
	Manifest  *meta.Manifest
	Signature *keys.Signature
	Module    *wasm.Result
	// KeyCreated reports whether the author key was created by this build.
	KeyCreated bool
	// Archive is the written archive path, if any.
	Archive string
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	if o.HashAlg == 0 {
		o.HashAlg = pack.DefaultHash
	}
	if o.KeyAlg == 0 {
		o.KeyAlg = keys.DefaultAlg
	}
	if o.Keys == nil && o.VFS != nil {
		o.Keys = o.VFS.Keys()
	}
	return o
}

// Run builds p. It stops at the first failing stage and returns that
// stage's error; nothing is retried. The context is checked between
// stages, never in the middle of a write.
func Run(ctx context.Context, p *Project, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	logger := opts.Logger.With("app", p.Manifest.ID)
	if err := p.Manifest.ID.Validate(); err != nil {
		return nil, rom.Wrap(rom.KindSchemaViolation, p.Manifest.ID.String(), "invalid app id", err)
	}
	for _, c := range p.Manifest.Capabilities {
		if !wasm.IsCapability(c) {
			return nil, rom.Errorf(rom.KindSchemaViolation, c, "unknown capability, use one of %v", wasm.GatedCapabilities)
		}
	}
	if opts.Keys == nil {
		return nil, rom.Errorf(rom.KindKeyNotFound, p.Manifest.ID.Author, "no key store configured")
	}
	if !opts.NoInstall && opts.VFS == nil {
		return nil, rom.Errorf(rom.KindIOFailure, "", "no VFS to install into")
	}

	mod, err := processModule(ctx, p, opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("processed module", "size", len(mod.Bytes), "dropped_sections", mod.Dropped, "entry_points", mod.EntryPoints)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	encoded, err := transcodeFiles(ctx, p, opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("transcoded assets", "count", len(encoded))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	extra, err := toolchainMembers(p)
	if err != nil {
		return nil, err
	}

	m := p.Manifest
	m.Capabilities = slices.Clone(p.Manifest.Capabilities)
	m.EntryPoints = mod.EntryPoints
	m.Assets = nil
	packed := make([]pack.Asset, 0, len(encoded))
	for _, e := range encoded {
		packed = append(packed, pack.Asset{Name: e.Name, Kind: e.Kind, Data: e.Data})
	}
	pkg, err := pack.Compose(m, mod.Bytes, packed, extra, opts.HashAlg)
	if err != nil {
		return nil, err
	}
	manifest, err := pkg.Manifest()
	if err != nil {
		return nil, err
	}

	kp, created, err := opts.Keys.LoadOrCreate(m.ID.Author, opts.KeyAlg, opts.CreateKey)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info("created author key", "author", m.ID.Author, "alg", kp.Alg())
	}
	sig, err := keys.Signer{Key: kp}.Sign(pkg.Digest, pkg.HashAlg)
	if err != nil {
		return nil, err
	}
	rawSig, err := sig.Encode()
	if err != nil {
		return nil, err
	}
	pkg.Attach(rawSig, kp.Public().Bytes)

	res := &Result{Package: pkg, Manifest: manifest, Signature: sig, Module: mod, KeyCreated: created}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !opts.NoInstall {
		if err := opts.VFS.Install(pkg); err != nil {
			return nil, err
		}
	}
	if opts.ArchiveDir != "" {
		res.Archive = filepath.Join(opts.ArchiveDir, vfs.ArchiveName(m.ID))
		if err := pack.WriteArchiveFile(res.Archive, pkg); err != nil {
			return nil, err
		}
	}
	logger.Info("built ROM", "size", pkg.Layout.Size, "members", len(pkg.Members), "digest", hex.EncodeToString(pkg.Digest))
	return res, nil
}

func processModule(ctx context.Context, p *Project, opts Options) (*wasm.Result, error) {
	raw, err := readSource(p.path(p.Module), rom.Bin, rom.KindModuleTooLarge)
	if err != nil {
		return nil, err
	}
	policy := wasm.DefaultPolicy(p.capabilities())
	policy.RequiredExports = p.RequiredExports
	policy.Validate = opts.Validate
	return wasm.Postprocess(ctx, raw, policy)
}

func transcodeFiles(ctx context.Context, p *Project, opts Options) ([]assets.Encoded, error) {
	sources := make([]assets.Source, 0, len(p.Files))
	for _, f := range p.Files {
		data, err := readSource(p.path(f.Path), f.Name, rom.KindAssetTooLarge)
		if err != nil {
			return nil, err
		}
		if err := checkDigest(f, data); err != nil {
			return nil, err
		}
		sources = append(sources, assets.Source{Name: f.Name, Kind: f.Kind, Data: data, Palette: f.Palette})
	}
	limits := assets.DefaultLimits()
	if opts.Limits != nil {
		limits = *opts.Limits
	}
	return assets.TranscodeAll(ctx, sources, limits)
}

func toolchainMembers(p *Project) ([]pack.Member, error) {
	var extra []pack.Member
	if len(p.Badges) > 0 {
		raw, err := meta.EncodeBadges(p.Badges)
		if err != nil {
			return nil, err
		}
		extra = append(extra, pack.Member{Name: rom.Badges, Data: raw})
	}
	if len(p.Boards) > 0 {
		raw, err := meta.EncodeBoards(p.Boards)
		if err != nil {
			return nil, err
		}
		extra = append(extra, pack.Member{Name: rom.Boards, Data: raw})
	}
	stats, err := meta.EncodeStats(meta.DefaultStats(p.Badges, len(p.Boards)))
	if err != nil {
		return nil, err
	}
	extra = append(extra, pack.Member{Name: rom.Stats, Data: stats})
	return extra, nil
}
