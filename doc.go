/*
Package raidfs implements a small userspace RAID filesystem: a single logical
volume striped or mirrored across an ordered set of fixed-size backing image
files.

The on-disk layout (superblock, inode bitmap, data bitmap, inode table, data
region) is computed by the mkfs subpackage at format time and interpreted by
the engine subpackage at mount time. This package holds the types and
constants shared by every layer: block/inode geometry, the RAID mode
enumeration, and the error taxonomy the engine surfaces to callers.
*/
package raidfs
