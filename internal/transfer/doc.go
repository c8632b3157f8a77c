package transfer

// Package transfer copies finalized files to a removable volume. Discovery
// prefers an explicitly configured mount path and otherwise scans mounted
// partitions for something that looks like a USB stick (FAT-family
// filesystem or a removable-media mountpoint). Copies check free space
// first so a full target fails with a distinguishable error.
