// Package relevance decides whether an image is likely to show the person
// being searched for.
//
// Stage one (Prefilter) reads only the image URL and rejects page furniture
// such as logos, icons, banners and explicit tiny sizes, so those are never
// fetched. Stage two (Score) looks at the decoded image: detected faces,
// aspect ratio, the hosting domain and the URL text combine into a score in
// [0,1], and images at or above the threshold are kept.
//
// Face detection sits behind FaceDetector; PigoDetector implements it with
// a pigo cascade file. Without a detector, Score reports a classification
// error and callers keep the image on size validation alone.
package relevance
