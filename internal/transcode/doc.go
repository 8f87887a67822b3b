// Package transcode optionally recompresses media between download and
// upload, per spec §4.7. 16-bit linear PCM WAV audio is re-encoded as G.711
// u-law and images larger than 1600px on either edge are downscaled to JPEG;
// other audio (including audio that is already G.711) passes through. If the
// result is not below 90% of the original size, the original bytes,
// extension and MIME type pass through unchanged.
package transcode
